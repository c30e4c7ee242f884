// Package secret resolves secret-bearing configuration values.
//
// Values pass through strict environment expansion (see ExpandEnvStrict) and
// then through a Resolver, which replaces references of the form
//
//	secretref:<provider>:<ref>
//
// with the value returned by the named Provider. Two providers ship with
// the package: "env" reads an environment variable and "file" reads a file,
// typically a mounted container secret.
//
//	dsn:        secretref:file:/run/secrets/menucache_dsn
//	jwt_secret: secretref:env:MENUCACHE_JWT_SECRET
//
// References may also appear inline ("postgres://app:secretref:env:PGPASS@db/wp").
// Providers are built by name from the DefaultRegistry so configuration can
// list them declaratively.
package secret
