package models

// StatusID はタスク状態の識別子です。値は参照テーブルの主キーと一致します。
type StatusID uint

const (
	StatusCreated    StatusID = 1
	StatusInProgress StatusID = 2
	StatusCompleted  StatusID = 3
	StatusFailed     StatusID = 4
	StatusCanceled   StatusID = 5
	StatusDownloaded StatusID = 6
)

var statusNames = map[StatusID]string{
	StatusCreated:    "task_created",
	StatusInProgress: "task_in_progress",
	StatusCompleted:  "task_completed",
	StatusFailed:     "task_failed",
	StatusCanceled:   "task_canceled",
	StatusDownloaded: "task_downloaded",
}

func (s StatusID) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// ProcessID はタスクに適用された処理の識別子です。
type ProcessID uint

const (
	ProcessUndefined ProcessID = 1
	ProcessMerge     ProcessID = 2
	ProcessLock      ProcessID = 3
	ProcessUnlock    ProcessID = 4
	ProcessSplit     ProcessID = 5
)

var processNames = map[ProcessID]string{
	ProcessUndefined: "undefined",
	ProcessMerge:     "pdf_merge",
	ProcessLock:      "pdf_lock",
	ProcessUnlock:    "pdf_unlock",
	ProcessSplit:     "pdf_split",
}

func (p ProcessID) String() string {
	if name, ok := processNames[p]; ok {
		return name
	}
	return "unknown"
}

// TaskStatus は状態の参照行です。
type TaskStatus struct {
	ID   StatusID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name string   `gorm:"size:64;not null" json:"name"`
}

// TaskProcess は処理種別の参照行です。
type TaskProcess struct {
	ID   ProcessID `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name string    `gorm:"size:64;not null" json:"name"`
}

// Statuses はコード上で定義された全状態を ID 順に返します。
func Statuses() []TaskStatus {
	return []TaskStatus{
		{ID: StatusCreated, Name: StatusCreated.String()},
		{ID: StatusInProgress, Name: StatusInProgress.String()},
		{ID: StatusCompleted, Name: StatusCompleted.String()},
		{ID: StatusFailed, Name: StatusFailed.String()},
		{ID: StatusCanceled, Name: StatusCanceled.String()},
		{ID: StatusDownloaded, Name: StatusDownloaded.String()},
	}
}

// Processes はコード上で定義された全処理種別を ID 順に返します。
func Processes() []TaskProcess {
	return []TaskProcess{
		{ID: ProcessUndefined, Name: ProcessUndefined.String()},
		{ID: ProcessMerge, Name: ProcessMerge.String()},
		{ID: ProcessLock, Name: ProcessLock.String()},
		{ID: ProcessUnlock, Name: ProcessUnlock.String()},
		{ID: ProcessSplit, Name: ProcessSplit.String()},
	}
}
