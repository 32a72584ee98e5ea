// Package model holds the domain types shared by the API, the agents and storage:
// people, splits, transactions and the bill analysis envelopes.
package model
