package evaluation

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// LabeledDataset is the on-disk format consumed by DirectorySource.
type LabeledDataset struct {
	Predictions []Prediction       `json:"predictions"`
	GroundTruth []GroundTruthLabel `json:"ground_truth"`
}

// DirectorySource reads labeled datasets from {dir}/{detector}.json.
type DirectorySource struct {
	dir string
}

// NewDirectorySource creates a source rooted at dir.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir}
}

// LabeledData loads the detector's dataset file.
func (s *DirectorySource) LabeledData(detectorName string) ([]Prediction, []GroundTruthLabel, error) {
	path := filepath.Join(s.dir, detectorName+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, notFoundErr("no labeled dataset for detector %q at %s", detectorName, path)
		}
		return nil, nil, storageErr("read dataset %s: %v", path, err)
	}

	var dataset LabeledDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, nil, storageErr("parse dataset %s: %v", path, err)
	}
	return dataset.Predictions, dataset.GroundTruth, nil
}
