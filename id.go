package groupq

import "github.com/ddeklerk28/groupq/id"

// ID is the primary identifier type for all groupq entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
