package domain

type Stage int

const (
	StageUpload Stage = iota + 1
	StageEdit
	StageBackground
	StageSize
	StageDownload
)

const (
	FirstStage = StageUpload
	LastStage  = StageDownload
)

var stageNames = [...]string{
	StageUpload:     "Upload",
	StageEdit:       "Edit",
	StageBackground: "Background",
	StageSize:       "Size",
	StageDownload:   "Download",
}

func (s Stage) String() string {
	if !s.Valid() {
		return "Unknown"
	}
	return stageNames[s]
}

func (s Stage) Valid() bool {
	return s >= FirstStage && s <= LastStage
}

type StageInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

func Stages() []StageInfo {
	out := make([]StageInfo, 0, int(LastStage))
	for s := FirstStage; s <= LastStage; s++ {
		out = append(out, StageInfo{Index: int(s), Name: s.String()})
	}
	return out
}
