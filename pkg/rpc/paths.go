package rpc

// gRPC query services reachable through abci_query. The ABCI path is "/<service>/<method>".
const (
	BankService     = "cosmos.bank.v1beta1.Query"
	StakingService  = "cosmos.staking.v1beta1.Query"
	CosmWasmService = "cosmwasm.wasm.v1.Query"

	AllBalancesMethod          = "AllBalances"
	DelegatorDelegationsMethod = "DelegatorDelegations"
	SmartContractStateMethod   = "SmartContractState"
)

// QueryPath builds the ABCI query path for a gRPC service method.
func QueryPath(service, method string) string {
	return "/" + service + "/" + method
}
