package room

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/park285/chess-rooms/internal/rules"
	"go.uber.org/zap"
)

const maxIDLen = 64

var (
	idPattern     = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	squarePattern = regexp.MustCompile(`^[a-h][1-8]$`)
)

func checkID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: bad game id", ErrMalformedRequest)
	}
	return nil
}

// Dispatch decodes one inbound frame and routes it. A failed event is reported to conn as an
// error event and returned for logging; it never reaches other members.
func (c *Coordinator) Dispatch(conn ConnID, raw []byte) error {
	err := c.dispatch(conn, raw)
	if err != nil {
		c.fail(conn, err)
		c.logger().Debug("room_event_rejected", zap.String("conn", string(conn)), zap.Error(err))
	}
	return err
}

func (c *Coordinator) dispatch(conn ConnID, raw []byte) error {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if f.Event == EventMove {
		req, err := decodeMove(f.Data)
		if err != nil {
			return err
		}
		return c.Move(conn, req.GameID, *req.Move)
	}

	var handle func(ConnID, string) error
	switch f.Event {
	case EventCreateGame:
		handle = c.CreateGame
	case EventJoinGame:
		handle = c.JoinGame
	case EventStartGame:
		handle = c.StartGame
	case EventRequestBoardState:
		handle = c.RequestBoardState
	case EventResetGame:
		handle = c.ResetGame
	default:
		return fmt.Errorf("%w: unknown event %q", ErrMalformedRequest, f.Event)
	}
	id, err := decodeID(f.Data)
	if err != nil {
		return err
	}
	return handle(conn, id)
}

// decodeID accepts a bare JSON string or an object carrying gameId.
func decodeID(data json.RawMessage) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", fmt.Errorf("%w: missing game id", ErrMalformedRequest)
	}
	var id string
	if data[0] == '{' {
		var obj struct {
			GameID string `json:"gameId"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedRequest, err)
		}
		id = obj.GameID
	} else if err := json.Unmarshal(data, &id); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	id = strings.TrimSpace(id)
	if err := checkID(id); err != nil {
		return "", err
	}
	return id, nil
}

func decodeMove(data json.RawMessage) (*MoveRequest, error) {
	var req MoveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	req.GameID = strings.TrimSpace(req.GameID)
	if err := checkID(req.GameID); err != nil {
		return nil, err
	}
	if req.Move == nil {
		return nil, fmt.Errorf("%w: missing move", ErrMalformedRequest)
	}
	mv := rules.Move{
		From:      strings.ToLower(strings.TrimSpace(req.Move.From)),
		To:        strings.ToLower(strings.TrimSpace(req.Move.To)),
		Promotion: strings.ToLower(strings.TrimSpace(req.Move.Promotion)),
	}
	if !squarePattern.MatchString(mv.From) || !squarePattern.MatchString(mv.To) {
		return nil, fmt.Errorf("%w: bad square", ErrMalformedRequest)
	}
	switch mv.Promotion {
	case "", "q", "r", "b", "n":
	default:
		return nil, fmt.Errorf("%w: bad promotion piece", ErrMalformedRequest)
	}
	req.Move = &mv
	return &req, nil
}
