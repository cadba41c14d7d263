package uniflow

import "github.com/xraph/uniflow/id"

// ID is the identifier type used for dispatchers, receipts and task runs.
type ID = id.ID

// Prefix identifies the entity type encoded in an ID.
type Prefix = id.Prefix
