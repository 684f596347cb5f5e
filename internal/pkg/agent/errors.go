package agent

import "errors"

var (
	// ErrNetworkUnavailable indicates outbound connectivity is not usable;
	// steps that need the network fail fast on it without retrying.
	ErrNetworkUnavailable = errors.New("network unavailable")

	// ErrDownloadFailed indicates the distributable package could not be
	// fetched to the scratch location.
	ErrDownloadFailed = errors.New("package download failed")

	// ErrExtractFailed indicates the package could not be extracted, or the
	// expected executable was not found after extraction.
	ErrExtractFailed = errors.New("package extraction failed")

	// ErrCopyFailed indicates the executable did not verifiably land at its
	// canonical installed path.
	ErrCopyFailed = errors.New("executable copy failed")

	// ErrUninstallVerificationFailed indicates the installed executable was
	// missing before unregistration, or still present after removal.
	ErrUninstallVerificationFailed = errors.New("uninstall verification failed")
)
