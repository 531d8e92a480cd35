package archivefmt

import "io"

// PasswordFunc is asked for a password when Open reports
// ErrPasswordRequired. An empty return means "no password available";
// the caller still retries once, so that a format whose encryption
// check depends on actually attempting decompression gets a chance to
// fail with a proper KindPassword error instead of KindArchiveFormat.
type PasswordFunc func() (string, error)

// Open constructs a Reader for the given format over ra/size,
// transparently handling the no-password-then-prompt retry flow
// described in spec.md §4.B step 1. The byte stream position does not
// matter across the retry: each format reader is handed a fresh
// io.ReaderAt view rather than a stateful stream.
func Open(format Format, ra io.ReaderAt, size int64, passwordFn PasswordFunc) (Reader, error) {
	r, err := openOnce(format, ra, size, "")
	if err == ErrPasswordRequired {
		if passwordFn == nil {
			return nil, ErrPasswordRequired
		}
		pw, pwErr := passwordFn()
		if pwErr != nil {
			return nil, pwErr
		}
		r, err = openOnce(format, ra, size, pw)
	}
	return r, err
}

func openOnce(format Format, ra io.ReaderAt, size int64, password string) (Reader, error) {
	switch format {
	case FormatZip:
		return newZipReader(ra, size, password)
	case FormatSevenZip:
		return newSevenZReader(ra, size, password)
	case FormatRar:
		return newRarReader(ra, size, password)
	default:
		return nil, ErrBadFormat
	}
}
