package harbor

// Gantry label keys for managed resources.
const (
	// LabelPrefix is the prefix for all gantry labels.
	LabelPrefix = "dev.gantry"

	// LabelManaged marks a resource as managed by gantry.
	LabelManaged = LabelPrefix + ".managed"

	// LabelRun identifies the run that created the resource.
	LabelRun = LabelPrefix + ".run"

	// LabelHandle stores the user-facing handle of a container.
	LabelHandle = LabelPrefix + ".handle"

	// LabelStatic marks a container as shared across runs.
	LabelStatic = LabelPrefix + ".static"
)

// ManagedLabelValue is the value for the managed label.
const ManagedLabelValue = "true"

// MergeLabels merges label maps left to right; later maps win on conflict.
// Nil maps are skipped.
func MergeLabels(maps ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
