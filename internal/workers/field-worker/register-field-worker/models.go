package registerfieldworker

type Input struct {
	Name           string `json:"name"`
	PhoneNumber    string `json:"phoneNumber"`
	MasterCategory string `json:"masterCategory"`
}

type Output struct {
	FieldWorkerID  int64  `json:"fieldWorkerId"`
	Name           string `json:"name"`
	MasterCategory string `json:"masterCategory"`
	WorkStatus     bool   `json:"workStatus"`
}
