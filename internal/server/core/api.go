package core

import "encoding/json"

// Request types

// Cell values on the wire are "B", "W" or "U"
type MoveRequest struct {
	Board [][]string `json:"board" validate:"required,min=1,max=26,dive,min=1,max=26,dive,oneof=B W U"`
	Turn  string     `json:"turn" validate:"required,oneof=B W"`
	Size  int        `json:"size" validate:"required,min=1,max=26"`
}

type Coord struct {
	Row int `json:"row" validate:"min=0,max=25"`
	Col int `json:"col" validate:"min=0,max=25"`
}

type AIMoveRequest struct {
	Board          [][]string `json:"board" validate:"required,min=1,max=26,dive,min=1,max=26,dive,oneof=B W U"`
	Turn           string     `json:"turn" validate:"required,oneof=B W"`
	Size           int        `json:"size" validate:"required,min=1,max=26"`
	AvailableMoves []Coord    `json:"availableMoves" validate:"max=676,dive"`
	LastMove       *Coord     `json:"lastMove,omitempty"`
}

type SetupRequest struct {
	MatchID   string          `json:"matchId" validate:"required,min=1,max=64"`
	SetupData json.RawMessage `json:"setupData" validate:"required"`
}

type AdminLoginRequest struct {
	Password string `json:"password" validate:"required,max=128"`
}

// Response types

type UploadResponse struct {
	CodeID string `json:"code_id"`
}

type StatusResponse struct {
	Status          string `json:"status"`
	ErrorMessage    string `json:"error_message,omitempty"`
	FailedStage     string `json:"failed_stage,omitempty"`
	TestReturnValue *int   `json:"test_return_value,omitempty"`
}

type MoveResponse struct {
	Row         int    `json:"row"`
	Col         int    `json:"col"`
	Elapsed     int64  `json:"elapsed"` // microseconds
	ReturnValue int    `json:"returnValue"`
	TimedOut    bool   `json:"timedOut"`
	Fault       string `json:"fault,omitempty"`
}

type AIMoveResponse struct {
	Row         int    `json:"row"`
	Col         int    `json:"col"`
	Explanation string `json:"explanation"`
}

type ExistsResponse struct {
	Exists bool `json:"exists"`
}

type StatsResponse struct {
	TotalGames  int64  `json:"total_games"`
	LastUpdated string `json:"last_updated"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

type InvocationResponse struct {
	InvocationID int64  `json:"invocationId"`
	Class        string `json:"class"`
	Group        string `json:"group,omitempty"`
	ArtifactID   string `json:"artifactId"`
	BoardSize    int    `json:"boardSize"`
	Turn         string `json:"turn"`
	Row          int    `json:"row"`
	Col          int    `json:"col"`
	ReturnValue  int    `json:"returnValue"`
	Elapsed      int64  `json:"elapsed"` // microseconds
	TimedOut     bool   `json:"timedOut"`
	Fault        string `json:"fault,omitempty"`
	InvokedAt    string `json:"invokedAt"`
}
