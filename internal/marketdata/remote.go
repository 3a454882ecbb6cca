package marketdata

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/wonny/arbfilter/internal/processor"
	"github.com/wonny/arbfilter/pkg/httputil"
)

// maxRemoteBytes caps a downloaded quote file.
const maxRemoteBytes = 32 << 20

// IsRemote reports whether src is an http(s) URL.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Fetch downloads quotes from rawURL: an .xlsx path is read as a workbook
// (first sheet), anything else as CSV.
func Fetch(ctx context.Context, client *httputil.Client, rawURL string, u Units) (processor.Input, error) {
	body, err := client.Fetch(ctx, rawURL, maxRemoteBytes)
	if err != nil {
		return processor.Input{}, fmt.Errorf("fetch quotes: %w", err)
	}

	if isXLSX(rawURL) {
		return ReadXLSX(bytes.NewReader(body), rawURL, "", u)
	}
	in, err := Read(bytes.NewReader(body), u)
	if err != nil {
		return processor.Input{}, fmt.Errorf("%s: %w", rawURL, err)
	}
	return in, nil
}

func isXLSX(rawURL string) bool {
	p := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		p = parsed.Path
	}
	return strings.EqualFold(path.Ext(p), ".xlsx")
}

// Load reads quotes from a URL or a local .csv/.xlsx file.
func Load(ctx context.Context, client *httputil.Client, src string, u Units) (processor.Input, error) {
	if IsRemote(src) {
		return Fetch(ctx, client, src, u)
	}
	return LoadFile(src, u)
}
