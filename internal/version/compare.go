package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/rxtech-lab/argo-broker/pkg/errors"
)

// CheckSnapshotCompatibility reports whether a snapshot written by
// snapshotVersion can be restored by a build of currentVersion.
//
// Rules:
//   - "main" on either side skips the check
//   - major versions must match
//   - the snapshot minor version must not be newer than the current one
//   - patch versions are ignored
//
// Examples:
//   - current 1.2.0, snapshot 1.2.7 -> OK
//   - current 1.3.0, snapshot 1.2.0 -> OK
//   - current 1.2.0, snapshot 1.3.0 -> ERROR (snapshot is newer)
//   - current 2.0.0, snapshot 1.2.0 -> ERROR (major differs)
func CheckSnapshotCompatibility(currentVersion, snapshotVersion string) error {
	currentVersion = strings.TrimPrefix(currentVersion, "v")
	snapshotVersion = strings.TrimPrefix(snapshotVersion, "v")

	if currentVersion == "main" || snapshotVersion == "main" {
		return nil
	}

	current, err := semver.NewVersion(currentVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSnapshotFailed, err, "invalid broker version '%s'", currentVersion)
	}

	saved, err := semver.NewVersion(snapshotVersion)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeSnapshotFailed, err, "invalid snapshot version '%s'", snapshotVersion)
	}

	if current.Major() != saved.Major() {
		return errors.Newf(errors.ErrCodeSnapshotFailed, "major version mismatch: broker is %d.x.x but snapshot is %d.x.x",
			current.Major(), saved.Major())
	}

	if saved.Minor() > current.Minor() {
		return errors.Newf(errors.ErrCodeSnapshotFailed, "snapshot is newer: broker is %d.%d.x but snapshot is %d.%d.x",
			current.Major(), current.Minor(), saved.Major(), saved.Minor())
	}

	return nil
}
