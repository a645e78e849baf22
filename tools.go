//go:build tools

// Package tools pins the code generators used by go:generate,
// so mockgen resolves from go.mod on a fresh checkout.
package dm_relay

import (
	_ "go.uber.org/mock/mockgen"
)
