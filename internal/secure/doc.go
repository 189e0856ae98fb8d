// Package secure holds secret values in memguard enclaves.
//
// Values fetched at startup stay encrypted in memory for the lifetime of
// the process. They are decrypted only for the short window in which they
// are written to an ephemeral credential file:
//
//	err := buf.WithPlaintext(func(b []byte) error {
//	    _, err := f.Write(b)
//	    return err
//	})
//
// Call memguard.Purge() from main before the process exits.
package secure
