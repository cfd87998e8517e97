package scree

import "context"

// Hooks receives notifications about completed pushes. The registry invokes
// ManifestUploaded exactly once per successful manifest PUT, after the
// manifest is durable. A hook error never fails the request; it is logged
// and otherwise ignored.
type Hooks interface {
	ManifestUploaded(ctx context.Context, ref ManifestReference) error
}

// NopHooks is a Hooks implementation that does nothing. It is the default
// when no hooks are configured.
type NopHooks struct{}

func (NopHooks) ManifestUploaded(ctx context.Context, ref ManifestReference) error {
	return nil
}
