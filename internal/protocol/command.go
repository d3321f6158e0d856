package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Commands are encoded as externally tagged JSON: a single-key object
// named after the variant, except that variants carrying no payload
// encode as a bare JSON string.

// ClientKind discriminates client→server commands.
type ClientKind int

const (
	// ClientLogin requests login or registration.
	ClientLogin ClientKind = iota + 1
	// ClientSendMessage submits one chat message.
	ClientSendMessage
	// ClientFetch requests a replay of messages sent at or after an instant.
	ClientFetch
)

// LoginRequest carries everything needed to log in or register.
type LoginRequest struct {
	IsRegistering bool   `json:"is_registering"`
	Nickname      string `json:"nickname"`
	Password      string `json:"password"`
}

// ClientCommand is one client→server command. Exactly the fields for
// its Kind are meaningful.
type ClientCommand struct {
	Kind  ClientKind
	Login LoginRequest
	Text  string
	Since time.Time
}

// NewLogin builds a Login command.
func NewLogin(isRegistering bool, nickname, password string) ClientCommand {
	return ClientCommand{
		Kind: ClientLogin,
		Login: LoginRequest{
			IsRegistering: isRegistering,
			Nickname:      nickname,
			Password:      password,
		},
	}
}

// NewSendMessage builds a SendMessage command.
func NewSendMessage(text string) ClientCommand {
	return ClientCommand{Kind: ClientSendMessage, Text: text}
}

// NewFetch builds a Fetch command for messages at or after the instant.
func NewFetch(since time.Time) ClientCommand {
	return ClientCommand{Kind: ClientFetch, Since: since.UTC()}
}

func (c ClientCommand) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ClientLogin:
		return json.Marshal(map[string]LoginRequest{"Login": c.Login})
	case ClientSendMessage:
		return json.Marshal(map[string]string{"SendMessage": c.Text})
	case ClientFetch:
		return json.Marshal(map[string]time.Time{"Fetch": c.Since})
	default:
		return nil, fmt.Errorf("%w: unknown client command kind %d", ErrInvalidInput, c.Kind)
	}
}

func (c *ClientCommand) UnmarshalJSON(data []byte) error {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if len(env) != 1 {
		return fmt.Errorf("%w: command must be a single-variant object", ErrInvalidData)
	}
	for tag, body := range env {
		switch tag {
		case "Login":
			c.Kind = ClientLogin
			if err := json.Unmarshal(body, &c.Login); err != nil {
				return fmt.Errorf("%w: Login: %v", ErrInvalidData, err)
			}
		case "SendMessage":
			c.Kind = ClientSendMessage
			if err := json.Unmarshal(body, &c.Text); err != nil {
				return fmt.Errorf("%w: SendMessage: %v", ErrInvalidData, err)
			}
		case "Fetch":
			c.Kind = ClientFetch
			if err := json.Unmarshal(body, &c.Since); err != nil {
				return fmt.Errorf("%w: Fetch: %v", ErrInvalidData, err)
			}
		default:
			return fmt.Errorf("%w: unknown command %q", ErrInvalidData, tag)
		}
	}
	return nil
}

// ServerKind discriminates server→client commands.
type ServerKind int

const (
	// ServerLoginSuccess acknowledges a successful login or registration.
	ServerLoginSuccess ServerKind = iota + 1
	// ServerMessageRecv delivers one accepted message.
	ServerMessageRecv
	// ServerWarning is advisory; the connection stays usable.
	ServerWarning
	// ServerError is fatal; the peer must expect a stream reset.
	ServerError
)

// ServerCommand is one server→client command.
type ServerCommand struct {
	Kind        ServerKind
	Message     Message
	Description string
}

// NewLoginSuccess builds a LoginSuccess command.
func NewLoginSuccess() ServerCommand {
	return ServerCommand{Kind: ServerLoginSuccess}
}

// NewMessageRecv builds a MessageRecv command.
func NewMessageRecv(msg Message) ServerCommand {
	return ServerCommand{Kind: ServerMessageRecv, Message: msg}
}

// NewWarning builds an advisory Warning command.
func NewWarning(description string) ServerCommand {
	return ServerCommand{Kind: ServerWarning, Description: description}
}

// NewError builds a connection-fatal Error command.
func NewError(description string) ServerCommand {
	return ServerCommand{Kind: ServerError, Description: description}
}

type messageRecvBody struct {
	Message Message `json:"message"`
}

type descriptionBody struct {
	Description string `json:"description"`
}

func (c ServerCommand) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ServerLoginSuccess:
		return json.Marshal("LoginSuccess")
	case ServerMessageRecv:
		return json.Marshal(map[string]messageRecvBody{"MessageRecv": {Message: c.Message}})
	case ServerWarning:
		return json.Marshal(map[string]descriptionBody{"Warning": {Description: c.Description}})
	case ServerError:
		return json.Marshal(map[string]descriptionBody{"Error": {Description: c.Description}})
	default:
		return nil, fmt.Errorf("%w: unknown server command kind %d", ErrInvalidInput, c.Kind)
	}
}

func (c *ServerCommand) UnmarshalJSON(data []byte) error {
	// Payload-free variants arrive as a bare JSON string.
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag != "LoginSuccess" {
			return fmt.Errorf("%w: unknown command %q", ErrInvalidData, tag)
		}
		c.Kind = ServerLoginSuccess
		return nil
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if len(env) != 1 {
		return fmt.Errorf("%w: command must be a single-variant object", ErrInvalidData)
	}
	for tag, body := range env {
		switch tag {
		case "MessageRecv":
			var b messageRecvBody
			if err := json.Unmarshal(body, &b); err != nil {
				return fmt.Errorf("%w: MessageRecv: %v", ErrInvalidData, err)
			}
			c.Kind = ServerMessageRecv
			c.Message = b.Message
		case "Warning", "Error":
			var b descriptionBody
			if err := json.Unmarshal(body, &b); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidData, tag, err)
			}
			if tag == "Warning" {
				c.Kind = ServerWarning
			} else {
				c.Kind = ServerError
			}
			c.Description = b.Description
		default:
			return fmt.Errorf("%w: unknown command %q", ErrInvalidData, tag)
		}
	}
	return nil
}
