package domain

import "encoding/json"

type Memorable interface {
	ToJson() string
	FromJson(jstr string) error
}

type Memo struct {
	Key  string `json:"key"`
	Memo string `json:"memo"`
}

// ExtractionMemo remembers how far the chain scan has progressed, so a
// restarted driver resumes where the previous run stopped.
type ExtractionMemo struct {
	LatestScannedBlock uint64 `json:"latest_scanned_block"`
}

func (obj *ExtractionMemo) ToJson() string {
	jstr, err := json.Marshal(obj)
	if err != nil {
		return err.Error()
	}
	return string(jstr)
}

func (obj *ExtractionMemo) FromJson(jstr string) error {
	err := json.Unmarshal([]byte(jstr), obj)
	return err
}
