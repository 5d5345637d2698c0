package services

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/quangdao0809/ganh-hat-loto/loto"
	"github.com/quangdao0809/ganh-hat-loto/models"
	"github.com/quangdao0809/ganh-hat-loto/utils/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway is the realtime surface: it upgrades connections, decodes action
// envelopes, routes them to the room engine and writes replies. Broadcasts
// reach clients through the bus fanout, not through the gateway.
type Gateway struct {
	reg *Registry
}

func NewGateway(reg *Registry) *Gateway {
	return &Gateway{reg: reg}
}

// HandleWebSocket upgrades GET /ws. The connection binds to a room via its
// first create/join/rejoin action.
func (gw *Gateway) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("[WS] upgrade: %v", err)
		return
	}
	client := newClient(gw, conn)
	go client.writePump()
	go client.readPump()
}

// clientMessage is the inbound action envelope; fields beyond Action are
// per-action. Shape validation beyond "is it JSON" belongs to the callers'
// schema layer, so unknown fields are simply ignored here.
type clientMessage struct {
	Action   string           `json:"action"`
	Nickname string           `json:"nickname,omitempty"`
	Code     string           `json:"code,omitempty"`
	PlayerID string           `json:"playerId,omitempty"`
	Settings *models.Settings `json:"settings,omitempty"`
	Count    int              `json:"count,omitempty"`
	TicketID string           `json:"ticketId,omitempty"`
	Grid     int              `json:"grid"`
	Row      int              `json:"row"`
	Col      int              `json:"col"`
	Numbers  []int            `json:"numbers,omitempty"`
}

type serverReply struct {
	Type    string                 `json:"type"`
	Action  string                 `json:"action"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message,omitempty"`
	Room    *RoomState             `json:"room,omitempty"`
	Player  *models.Player         `json:"player,omitempty"`
	View    *RejoinView            `json:"view,omitempty"`
	Number  int                    `json:"number,omitempty"`
	Tickets []models.Ticket        `json:"tickets,omitempty"`
	Ticket  *models.Ticket         `json:"ticket,omitempty"`
	Result  *loto.ValidationResult `json:"result,omitempty"`
}

func (c *Client) reply(r serverReply) {
	b, _ := json.Marshal(r)
	c.Send(b)
}

func (c *Client) replyErr(action string, err error) {
	c.reply(serverReply{Type: "error", Action: action, Code: ErrorCode(err), Message: err.Error()})
}

func (gw *Gateway) dispatch(c *Client, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply(serverReply{Type: "error", Action: "", Code: "bad_request", Message: "invalid message"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch msg.Action {
	case "room.create", "room.join", "room.rejoin":
		gw.handleBinding(ctx, c, msg)
		return
	}

	room, playerID := c.binding()
	if room == nil {
		c.reply(serverReply{Type: "error", Action: msg.Action, Code: "not_joined", Message: "join a room first"})
		return
	}

	switch msg.Action {
	case "room.leave":
		if err := room.Leave(ctx, playerID); err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.bind(nil, "")
		c.reply(serverReply{Type: "reply", Action: msg.Action})

	case "game.start":
		if err := room.Start(ctx, playerID); err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.reply(serverReply{Type: "reply", Action: msg.Action})

	case "game.spin":
		n, err := room.Spin(ctx, playerID)
		if err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.reply(serverReply{Type: "reply", Action: msg.Action, Number: n})

	case "game.reset":
		if err := room.Reset(ctx, playerID); err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.reply(serverReply{Type: "reply", Action: msg.Action})

	case "player.createTickets":
		tickets, err := room.CreateTickets(ctx, playerID, msg.Count)
		if err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.reply(serverReply{Type: "reply", Action: msg.Action, Tickets: tickets})

	case "player.markNumber":
		t, err := room.MarkNumber(ctx, playerID, msg.TicketID, msg.Grid, msg.Row, msg.Col)
		if err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.reply(serverReply{Type: "reply", Action: msg.Action, Ticket: t})

	case "player.callRow":
		res, err := room.CallRow(ctx, playerID, msg.TicketID, msg.Grid, msg.Row)
		if err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.reply(serverReply{Type: "reply", Action: msg.Action, Result: &res})

	case "host.validateNumbers":
		res, err := room.ValidateNumbers(ctx, playerID, msg.Numbers)
		if err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.reply(serverReply{Type: "reply", Action: msg.Action, Result: &res})

	case "host.validateTicket":
		res, err := room.ValidateTicket(ctx, playerID, msg.TicketID)
		if err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.reply(serverReply{Type: "reply", Action: msg.Action, Result: &res})

	default:
		c.reply(serverReply{Type: "error", Action: msg.Action, Code: "unknown_action", Message: "unknown action"})
	}
}

func (gw *Gateway) handleBinding(ctx context.Context, c *Client, msg clientMessage) {
	if room, _ := c.binding(); room != nil {
		c.reply(serverReply{Type: "error", Action: msg.Action, Code: "already_joined", Message: "connection already bound to a room"})
		return
	}

	switch msg.Action {
	case "room.create":
		var settings models.Settings
		if msg.Settings != nil {
			settings = *msg.Settings
		}
		room, host, err := gw.reg.Create(ctx, msg.Nickname, settings)
		if err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		if err := room.Attach(ctx, host.ID, c); err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.bind(room, host.ID)
		state, _ := gw.reg.State(ctx, room.Code())
		c.reply(serverReply{Type: "reply", Action: msg.Action, Room: state, Player: host})

	case "room.join":
		room, err := gw.reg.Room(ctx, msg.Code)
		if err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		state, p, err := room.Join(ctx, msg.Nickname)
		if err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		if err := room.Attach(ctx, p.ID, c); err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.bind(room, p.ID)
		c.reply(serverReply{Type: "reply", Action: msg.Action, Room: state, Player: p})

	case "room.rejoin":
		room, err := gw.reg.Room(ctx, msg.Code)
		if err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		view, err := room.Rejoin(ctx, msg.PlayerID)
		if err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		if err := room.Attach(ctx, msg.PlayerID, c); err != nil {
			c.replyErr(msg.Action, err)
			return
		}
		c.bind(room, msg.PlayerID)
		c.reply(serverReply{Type: "reply", Action: msg.Action, View: view})
	}
}
