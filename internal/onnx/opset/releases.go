package opset

import (
	"sort"

	"github.com/blang/semver/v4"

	"github.com/born-ml/onnxkit/internal/onnx"
)

// MLDomain is the traditional machine-learning operator domain.
const MLDomain = "ai.onnx.ml"

// Release pairs an ONNX release with the IR version and opset versions it introduced.
type Release struct {
	Version semver.Version
	IR      int64
	Opset   int64 // ai.onnx
	MLOpset int64 // ai.onnx.ml
}

// releases is ordered by semantic version.
var releases = func() []Release {
	rows := []struct {
		version       string
		ir, opset, ml int64
	}{
		{"1.0.0", 3, 1, 1},
		{"1.1.0", 3, 5, 1},
		{"1.1.2", 3, 6, 1},
		{"1.2.0", 3, 7, 1},
		{"1.3.0", 3, 8, 1},
		{"1.4.1", 4, 9, 1},
		{"1.5.0", 5, 10, 1},
		{"1.6.0", 6, 11, 2},
		{"1.7.0", 7, 12, 2},
		{"1.8.0", 7, 13, 2},
		{"1.8.1", 7, 13, 2},
		{"1.9.0", 7, 14, 2},
		{"1.10.0", 8, 15, 2},
		{"1.11.0", 8, 16, 3},
		{"1.12.0", 8, 17, 3},
		{"1.13.0", 8, 18, 3},
		{"1.14.0", 9, 19, 3},
		{"1.15.0", 9, 20, 4},
		{"1.16.0", 10, 21, 5},
		{"1.17.0", 10, 22, 5},
	}
	out := make([]Release, len(rows))
	for i, r := range rows {
		out[i] = Release{Version: semver.MustParse(r.version), IR: r.ir, Opset: r.opset, MLOpset: r.ml}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version.LT(out[j].Version) })
	return out
}()

// Releases returns the release table, oldest first.
func Releases() []Release {
	return append([]Release(nil), releases...)
}

// LatestRelease returns the newest known release.
func LatestRelease() Release {
	return releases[len(releases)-1]
}

// LatestOpset returns the newest known opset version of domain, or 0 for domains outside
// the release table.
func LatestOpset(domain string) int64 {
	switch onnx.CanonicalDomain(domain) {
	case onnx.DefaultDomain:
		return LatestRelease().Opset
	case MLDomain:
		return LatestRelease().MLOpset
	default:
		return 0
	}
}

// ReleaseForOpset returns the first release whose default-domain opset is at least opset.
func ReleaseForOpset(opset int64) (Release, bool) {
	for _, r := range releases {
		if r.Opset >= opset {
			return r, true
		}
	}
	return Release{}, false
}

// IRVersionForOpset returns the IR version of the first release shipping opset.
func IRVersionForOpset(opset int64) (int64, bool) {
	r, ok := ReleaseForOpset(opset)
	if !ok {
		return 0, false
	}
	return r.IR, true
}

// ReleaseByVersion looks up a release by its version string, e.g. "1.14.0" or "v1.14.0".
func ReleaseByVersion(v string) (Release, bool) {
	parsed, err := semver.ParseTolerant(v)
	if err != nil {
		return Release{}, false
	}
	for _, r := range releases {
		if r.Version.Equals(parsed) {
			return r, true
		}
	}
	return Release{}, false
}
