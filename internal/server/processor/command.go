package processor

import (
	"context"
	"errors"

	"reverc/internal/server/artifact"
	"reverc/internal/server/board"
	"reverc/internal/server/compiler"
	"reverc/internal/server/core"
)

// CommandType defines the type of command being executed
type CommandType int

const (
	CmdUpload CommandType = iota
	CmdGetStatus
	CmdCleanup
	CmdArchiveExists
	CmdMove
	CmdStoreArchive
)

// Command is a unified structure for all processor operations
type Command struct {
	Type CommandType
	Ref  artifact.Ref
	Args any
}

// UploadArgs carries the body of an upload
type UploadArgs struct {
	Class  core.Class
	Source []byte
}

// MoveArgs carries a parsed live position
type MoveArgs struct {
	Board *board.Board
	Turn  board.Cell
}

// ProcessorResponse wraps the response with metadata
type ProcessorResponse struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Error   *core.ErrorResponse `json:"error,omitempty"`
}

func NewUploadCommand(class core.Class, source []byte) Command {
	return Command{Type: CmdUpload, Args: UploadArgs{Class: class, Source: source}}
}

func NewGetStatusCommand(ref artifact.Ref) Command {
	return Command{Type: CmdGetStatus, Ref: ref}
}

func NewCleanupCommand(ref artifact.Ref, codeOnly bool) Command {
	return Command{Type: CmdCleanup, Ref: ref, Args: codeOnly}
}

func NewArchiveExistsCommand(group, id string) Command {
	return Command{Type: CmdArchiveExists, Ref: artifact.ArchiveRef(group, id)}
}

func NewMoveCommand(ref artifact.Ref, b *board.Board, turn board.Cell) Command {
	return Command{Type: CmdMove, Ref: ref, Args: MoveArgs{Board: b, Turn: turn}}
}

func NewStoreArchiveCommand(group, id string, source []byte) Command {
	return Command{Type: CmdStoreArchive, Ref: artifact.ArchiveRef(group, id), Args: source}
}

// Execute runs cmd and maps its error onto an API error code
func (p *Processor) Execute(ctx context.Context, cmd Command) ProcessorResponse {
	if cmd.Type != CmdUpload {
		if err := cmd.Ref.Validate(); err != nil {
			return p.errorResponse(err)
		}
	}

	switch cmd.Type {
	case CmdUpload:
		args, ok := cmd.Args.(UploadArgs)
		if !ok {
			return p.invalidArgs()
		}
		id, err := p.Upload(args.Class, args.Source)
		if err != nil {
			return p.errorResponse(err)
		}
		return ProcessorResponse{Success: true, Data: core.UploadResponse{CodeID: id}}

	case CmdGetStatus:
		rec, err := p.Status(cmd.Ref)
		if err != nil {
			return p.errorResponse(err)
		}
		return ProcessorResponse{Success: true, Data: core.StatusResponse{
			Status:          rec.State.String(),
			ErrorMessage:    rec.ErrorMessage,
			FailedStage:     string(rec.FailedStage),
			TestReturnValue: rec.TestReturnValue,
		}}

	case CmdCleanup:
		codeOnly, _ := cmd.Args.(bool)
		if err := p.Cleanup(cmd.Ref, codeOnly); err != nil {
			return p.errorResponse(err)
		}
		return ProcessorResponse{Success: true}

	case CmdArchiveExists:
		ok, err := p.ArchiveExists(cmd.Ref.Group, cmd.Ref.ID)
		if err != nil {
			return p.errorResponse(err)
		}
		if !ok {
			return p.errorResponse(ErrNotFound)
		}
		return ProcessorResponse{Success: true, Data: core.ExistsResponse{Exists: true}}

	case CmdMove:
		args, ok := cmd.Args.(MoveArgs)
		if !ok || args.Board == nil {
			return p.invalidArgs()
		}
		res, err := p.Move(ctx, cmd.Ref, args.Board, args.Turn)
		if err != nil {
			return p.errorResponse(err)
		}
		return ProcessorResponse{Success: true, Data: core.MoveResponse{
			Row:         res.Row,
			Col:         res.Col,
			Elapsed:     res.Elapsed.Microseconds(),
			ReturnValue: res.Return,
			TimedOut:    res.TimedOut,
			Fault:       res.Fault,
		}}

	case CmdStoreArchive:
		src, ok := cmd.Args.([]byte)
		if !ok {
			return p.invalidArgs()
		}
		rec, err := p.StoreArchive(ctx, cmd.Ref.Group, cmd.Ref.ID, src)
		if err != nil {
			return p.errorResponse(err)
		}
		return ProcessorResponse{Success: true, Data: core.StatusResponse{
			Status:          rec.State.String(),
			ErrorMessage:    rec.ErrorMessage,
			FailedStage:     string(rec.FailedStage),
			TestReturnValue: rec.TestReturnValue,
		}}

	default:
		return p.invalidArgs()
	}
}

func (p *Processor) invalidArgs() ProcessorResponse {
	return ProcessorResponse{Error: &core.ErrorResponse{Error: "unknown command", Code: core.ErrInvalidRequest}}
}

// errorResponse creates error response
func (p *Processor) errorResponse(err error) ProcessorResponse {
	code := core.ErrInternalError
	switch {
	case errors.Is(err, ErrNotFound):
		code = core.ErrNotFound
	case errors.Is(err, ErrNotReady):
		code = core.ErrNotReady
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrShuttingDown):
		code = core.ErrQueueFull
	case errors.Is(err, ErrClassNotAllowed), errors.Is(err, artifact.ErrInvalidRef), errors.Is(err, board.ErrInvalidBoard):
		code = core.ErrInvalidRequest
	}

	msg := err.Error()
	if code == core.ErrInternalError {
		p.logger.Error().Err(err).Msg("command failed")
		msg = "internal error"
	}
	return ProcessorResponse{Error: &core.ErrorResponse{Error: msg, Code: code}}
}

func isCompileFailure(err error) bool {
	var f *compiler.Failure
	return errors.As(err, &f)
}
