// Package types defines the Table and Catalog interfaces, the Row and
// Template data model with its matching and projection rules, configuration
// types, and the standard errors shared by every rowstore backend.
package types
