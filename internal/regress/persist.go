package regress

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/treeprice/internal/fetcher"
)

// ArtifactVersion is the current model artifact format.
const ArtifactVersion = 1

// Artifact is the persisted form of a fitted forest plus the column names
// needed to build inputs for it.
type Artifact struct {
	FormatVersion int           `json:"format_version"`
	CreatedAt     time.Time     `json:"created_at"`
	RunID         string        `json:"run_id,omitempty"`
	Features      []string      `json:"features"`
	Target        string        `json:"target"`
	Forest        *RandomForest `json:"forest"`
}

// SaveArtifact writes art to path as JSON. The file is written to a temporary
// sibling and renamed so readers never see a partial artifact.
func SaveArtifact(path string, art *Artifact) error {
	if art.Forest == nil || len(art.Forest.Trees) == 0 {
		return eris.New("regress: refusing to save an unfitted forest")
	}
	if art.FormatVersion == 0 {
		art.FormatVersion = ArtifactVersion
	}
	if art.CreatedAt.IsZero() {
		art.CreatedAt = time.Now().UTC()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "regress: create artifact")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(art); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "regress: encode artifact")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "regress: close artifact")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "regress: write artifact %s", path)
	}
	return nil
}

// LoadArtifact reads a model artifact written by SaveArtifact.
func LoadArtifact(path string) (*Artifact, error) {
	art, err := fetcher.DecodeJSONFile[Artifact](path)
	if err != nil {
		return nil, eris.Wrap(err, "regress: load artifact")
	}
	if art.FormatVersion != ArtifactVersion {
		return nil, eris.Errorf("regress: unsupported artifact version %d", art.FormatVersion)
	}
	if art.Forest == nil || len(art.Forest.Trees) == 0 {
		return nil, eris.New("regress: artifact holds no trees")
	}
	if art.Forest.NFeatures != len(art.Features) {
		return nil, eris.Errorf("regress: artifact lists %d features but forest expects %d",
			len(art.Features), art.Forest.NFeatures)
	}
	for i := range art.Forest.Trees {
		if err := art.Forest.Trees[i].check(art.Forest.NFeatures); err != nil {
			return nil, eris.Wrapf(err, "regress: artifact tree %d", i)
		}
	}
	return art, nil
}
