// Package contracts holds the smart-contract queriers the exporters read from.
// Each subpackage talks to one contract through a Querier.
package contracts

import "context"

// Querier runs a JSON smart query against a contract. *rpc.CosmWasm implements it.
type Querier interface {
	QueryContract(ctx context.Context, address string, payload any, out any) error
}
