// Package domain defines core data models, error taxonomy and interfaces
// shared across the app. It contains plain types (wire/state) and contracts
// (interfaces) only.
package domain
