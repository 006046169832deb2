package fulfillment

import "github.com/xraph/fulfillment/types"

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	USD        = types.USD
	Zero       = types.Zero
	Sum        = types.Sum
	FromFloat  = types.FromFloat
	ParseMajor = types.ParseMajor
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
