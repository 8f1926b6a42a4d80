// pkg/registry/schema.go
package registry

type UseCaseRegistry struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	UseCases    []UseCase `json:"useCases"`
}

type UseCase struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	TaskType    string   `json:"taskType"`
	Template    string   `json:"template"`
	Route       string   `json:"route"`
	Multimodal  bool     `json:"multimodal"`
	Cached      bool     `json:"cached"`
	HasFallback bool     `json:"hasFallback"`
	ErrorCodes  []string `json:"errorCodes"`
	Tags        []string `json:"tags"`
}

// Find returns the use case with the given id.
func (r *UseCaseRegistry) Find(id string) (UseCase, bool) {
	for _, uc := range r.UseCases {
		if uc.ID == id {
			return uc, true
		}
	}
	return UseCase{}, false
}
