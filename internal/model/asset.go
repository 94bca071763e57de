package model

// AssetKind tags the variant held by a SelectedAsset
type AssetKind int

const (
	AssetToken AssetKind = iota
	AssetDePool
)

// SelectedToken selects the history of a coin or token
type SelectedToken struct {
	Symbol Symbol
}

// SelectedDePool selects the history of a staking-pool participation
type SelectedDePool struct {
	Address string
}

// SelectedAsset is either a SelectedToken or a SelectedDePool.
// Use DispatchAsset to read it.
type SelectedAsset struct {
	kind   AssetKind
	token  SelectedToken
	dePool SelectedDePool
}

// SelectToken wraps a token selection
func SelectToken(symbol Symbol) SelectedAsset {
	return SelectedAsset{kind: AssetToken, token: SelectedToken{Symbol: symbol}}
}

// SelectDePool wraps a staking-pool selection
func SelectDePool(address string) SelectedAsset {
	return SelectedAsset{kind: AssetDePool, dePool: SelectedDePool{Address: address}}
}

// Kind returns the variant tag
func (a SelectedAsset) Kind() AssetKind {
	return a.kind
}

// DispatchAsset calls exactly one of the handlers depending on the variant
func DispatchAsset[T any](a SelectedAsset, token func(SelectedToken) T, dePool func(SelectedDePool) T) T {
	switch a.kind {
	case AssetDePool:
		return dePool(a.dePool)
	default:
		return token(a.token)
	}
}

// Symbol returns the history key of the selected asset
func (a SelectedAsset) Symbol() Symbol {
	return DispatchAsset(a,
		func(t SelectedToken) Symbol { return t.Symbol },
		func(d SelectedDePool) Symbol { return DePool(d.Address) },
	)
}
