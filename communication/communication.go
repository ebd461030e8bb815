// Package communication is the line protocol between a referee and a remote
// player. Every command is one ASCII line naming a player callback and is
// answered with exactly one line.
package communication

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"ginrummy/agent"
	"ginrummy/card"
)

const (
	CmdStartGame          = "startGame"
	CmdWillDrawFaceUpCard = "willDrawFaceUpCard"
	CmdReportDraw         = "reportDraw"
	CmdGetDiscard         = "getDiscard"
	CmdReportDiscard      = "reportDiscard"
	CmdGetFinalMelds      = "getFinalMelds"
	CmdReportFinalMelds   = "reportFinalMelds"
	CmdReportScores       = "reportScores"
	CmdReportLayoff       = "reportLayoff"
	CmdReportFinalHand    = "reportFinalHand"
)

const (
	respOK    = "ok"
	respTrue  = "true"
	respFalse = "false"
	respNull  = "null"
	respMelds = "melds"
	respError = "error"

	meldSeparator = "|"
)

var ErrMalformed = errors.New("malformed message")

// RemoteError is an error reported by the other end of the connection.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return "remote: " + e.Message }

// Conn carries protocol lines in both directions.
type Conn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

// Request is a decoded command. Only the fields of its command are set.
type Request struct {
	Command string
	Seat    int
	Starter int
	Card    card.Card
	Cards   []card.Card
	Melds   [][]card.Card
	Scores  [2]int
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// EncodeRequest formats r as a command line.
func EncodeRequest(r Request) string {
	var b strings.Builder
	b.WriteString(r.Command)
	arg := func(s string) {
		if s != "" {
			b.WriteByte(' ')
			b.WriteString(s)
		}
	}
	switch r.Command {
	case CmdStartGame:
		arg(strconv.Itoa(r.Seat))
		arg(strconv.Itoa(r.Starter))
		arg(card.FormatList(r.Cards))
	case CmdWillDrawFaceUpCard:
		arg(r.Card.String())
	case CmdReportDraw, CmdReportDiscard:
		arg(strconv.Itoa(r.Seat))
		arg(r.Card.String())
	case CmdReportFinalMelds:
		arg(strconv.Itoa(r.Seat))
		arg(FormatMelds(r.Melds))
	case CmdReportScores:
		arg(strconv.Itoa(r.Scores[0]))
		arg(strconv.Itoa(r.Scores[1]))
	case CmdReportLayoff:
		arg(strconv.Itoa(r.Seat))
		arg(r.Card.String())
		arg(card.FormatList(r.Cards))
	case CmdReportFinalHand:
		arg(strconv.Itoa(r.Seat))
		arg(card.FormatList(r.Cards))
	}
	return b.String()
}

// DecodeRequest parses a command line.
func DecodeRequest(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}, malformed("empty line")
	}
	r := Request{Command: fields[0], Card: card.None}
	args := fields[1:]

	var err error
	switch r.Command {
	case CmdGetDiscard, CmdGetFinalMelds:
		if len(args) != 0 {
			return r, malformed("%s takes no arguments", r.Command)
		}
	case CmdStartGame:
		if len(args) < 2 {
			return r, malformed("%s needs seats", r.Command)
		}
		if r.Seat, err = parseSeat(args[0]); err != nil {
			return r, err
		}
		if r.Starter, err = parseSeat(args[1]); err != nil {
			return r, err
		}
		r.Cards, err = parseCards(args[2:])
	case CmdWillDrawFaceUpCard:
		if len(args) != 1 {
			return r, malformed("%s takes a card", r.Command)
		}
		r.Card, err = parseCard(args[0])
	case CmdReportDraw, CmdReportDiscard:
		if len(args) != 2 {
			return r, malformed("%s takes a seat and a card", r.Command)
		}
		if r.Seat, err = parseSeat(args[0]); err != nil {
			return r, err
		}
		r.Card, err = parseCard(args[1])
	case CmdReportFinalMelds:
		if len(args) < 1 {
			return r, malformed("%s needs a seat", r.Command)
		}
		if r.Seat, err = parseSeat(args[0]); err != nil {
			return r, err
		}
		r.Melds, err = ParseMelds(args[1:])
	case CmdReportScores:
		if len(args) != 2 {
			return r, malformed("%s takes two scores", r.Command)
		}
		for i, s := range args {
			if r.Scores[i], err = strconv.Atoi(s); err != nil {
				return r, malformed("score %q", s)
			}
		}
	case CmdReportLayoff:
		if len(args) < 2 {
			return r, malformed("%s takes a seat, a card and a meld", r.Command)
		}
		if r.Seat, err = parseSeat(args[0]); err != nil {
			return r, err
		}
		if r.Card, err = parseCard(args[1]); err != nil {
			return r, err
		}
		r.Cards, err = parseCards(args[2:])
	case CmdReportFinalHand:
		if len(args) < 1 {
			return r, malformed("%s needs a seat", r.Command)
		}
		if r.Seat, err = parseSeat(args[0]); err != nil {
			return r, err
		}
		r.Cards, err = parseCards(args[1:])
	default:
		return r, malformed("unknown command %q", r.Command)
	}
	return r, err
}

func parseSeat(s string) (int, error) {
	seat, err := strconv.Atoi(s)
	if err != nil || seat < 0 || seat > 1 {
		return 0, malformed("seat %q", s)
	}
	return seat, nil
}

func parseCard(s string) (card.Card, error) {
	c, err := card.Parse(s)
	if err != nil {
		return card.None, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c, nil
}

func parseCards(fields []string) ([]card.Card, error) {
	cards := make([]card.Card, 0, len(fields))
	for _, f := range fields {
		c, err := parseCard(f)
		if err != nil {
			return nil, err
		}
		if !c.Valid() {
			return nil, malformed("null in a card list")
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// FormatMelds writes melds as card lists separated by "|".
func FormatMelds(melds [][]card.Card) string {
	parts := make([]string, len(melds))
	for i, m := range melds {
		parts[i] = card.FormatList(m)
	}
	return strings.Join(parts, " "+meldSeparator+" ")
}

// ParseMelds reads melds split into fields. No fields is no melds.
func ParseMelds(fields []string) ([][]card.Card, error) {
	melds := [][]card.Card{}
	if len(fields) == 0 {
		return melds, nil
	}
	var group []string
	flush := func() error {
		if len(group) == 0 {
			return malformed("empty meld")
		}
		cards, err := parseCards(group)
		if err != nil {
			return err
		}
		melds = append(melds, cards)
		group = nil
		return nil
	}
	for _, f := range fields {
		if f == meldSeparator {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		group = append(group, f)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return melds, nil
}

func EncodeOK() string { return respOK }

func EncodeError(err error) string {
	return respError + " " + strings.ReplaceAll(err.Error(), "\n", " ")
}

func EncodeBool(b bool) string {
	if b {
		return respTrue
	}
	return respFalse
}

func EncodeCard(c card.Card) string { return c.String() }

// EncodeMelds answers getFinalMelds; nil means no knock.
func EncodeMelds(melds [][]card.Card) string {
	if melds == nil {
		return respNull
	}
	if len(melds) == 0 {
		return respMelds
	}
	return respMelds + " " + FormatMelds(melds)
}

// remoteError returns the error carried by an error response.
func remoteError(line string) error {
	if line == respError || strings.HasPrefix(line, respError+" ") {
		return &RemoteError{Message: strings.TrimSpace(strings.TrimPrefix(line, respError))}
	}
	return nil
}

func DecodeOK(line string) error {
	if err := remoteError(line); err != nil {
		return err
	}
	if line != respOK {
		return malformed("expected %s, got %q", respOK, line)
	}
	return nil
}

func DecodeBool(line string) (bool, error) {
	if err := remoteError(line); err != nil {
		return false, err
	}
	switch line {
	case respTrue:
		return true, nil
	case respFalse:
		return false, nil
	}
	return false, malformed("expected a boolean, got %q", line)
}

func DecodeCard(line string) (card.Card, error) {
	if err := remoteError(line); err != nil {
		return card.None, err
	}
	return parseCard(strings.TrimSpace(line))
}

func DecodeMelds(line string) ([][]card.Card, error) {
	if err := remoteError(line); err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	switch {
	case len(fields) == 1 && fields[0] == respNull:
		return nil, nil
	case len(fields) > 0 && fields[0] == respMelds:
		return ParseMelds(fields[1:])
	}
	return nil, malformed("expected melds, got %q", line)
}

// Dispatch runs the callback named by r on p and encodes its answer.
func Dispatch(p agent.Player, r Request) string {
	var err error
	switch r.Command {
	case CmdStartGame:
		err = p.StartGame(r.Seat, r.Starter, r.Cards)
	case CmdWillDrawFaceUpCard:
		var take bool
		if take, err = p.WillDrawFaceUpCard(r.Card); err == nil {
			return EncodeBool(take)
		}
	case CmdReportDraw:
		err = p.ReportDraw(r.Seat, r.Card)
	case CmdGetDiscard:
		var c card.Card
		if c, err = p.GetDiscard(); err == nil {
			return EncodeCard(c)
		}
	case CmdReportDiscard:
		err = p.ReportDiscard(r.Seat, r.Card)
	case CmdGetFinalMelds:
		var melds [][]card.Card
		if melds, err = p.GetFinalMelds(); err == nil {
			return EncodeMelds(melds)
		}
	case CmdReportFinalMelds:
		err = p.ReportFinalMelds(r.Seat, r.Melds)
	case CmdReportScores:
		err = p.ReportScores(r.Scores)
	case CmdReportLayoff:
		err = p.ReportLayoff(r.Seat, r.Card, r.Cards)
	case CmdReportFinalHand:
		err = p.ReportFinalHand(r.Seat, r.Cards)
	default:
		err = malformed("unknown command %q", r.Command)
	}
	if err != nil {
		return EncodeError(err)
	}
	return EncodeOK()
}
