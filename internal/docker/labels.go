package docker

import (
	"github.com/google/uuid"
)

// Label keys used for sagastore test resources
const (
	LabelProject   = "sagastore.project"
	LabelRunID     = "sagastore.run_id"
	LabelComponent = "sagastore.component"
	LabelTest      = "sagastore.test"
)

// BuildLabels creates the label set for a container started by a test.
// Component and test name are omitted when empty.
func BuildLabels(runID, component, testName string) map[string]string {
	labels := map[string]string{
		LabelProject: "true",
		LabelRunID:   runID,
	}

	if component != "" {
		labels[LabelComponent] = component
	}
	if testName != "" {
		labels[LabelTest] = testName
	}

	return labels
}

// GenerateRunID creates a new UUID identifying one test run's containers.
func GenerateRunID() string {
	return uuid.New().String()
}
