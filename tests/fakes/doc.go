// Package fakes provides test doubles for the secret store clients.
//
// Fakes are written by hand rather than generated so tests control exactly
// what each call returns. Every fake returns a fresh copy of stored bytes,
// because sealing a value into a memguard enclave wipes the source slice.
//
//	fake := fakes.NewFakeGCPSecretManagerClient()
//	fake.AddSecretString("my-project", "bzero-creds", `{"id":"..."}`)
//	store := secretstore.NewGCPStoreWithClient(fake, "my-project")
package fakes
