/*
Package validators defines the registry of node identities that are permitted
to validate blocks.

Identities are plain strings supplied by the application; Lamarck does not
sign or authenticate them. The Set type is an immutable snapshot of the
registry: adding an identity that is already present returns an equivalent
set, which gives the registry its idempotent semantics.
*/
package validators
