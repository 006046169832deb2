package fulfillment

import "github.com/xraph/fulfillment/id"

// ID is the identifier type for records created by this service.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
