package messaging

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	server "github.com/charadev96/gochan/internal/server/domain"
)

func encodeResult(res server.Result) map[string]any {
	fields := map[string]any{
		"outcome": res.Outcome.String(),
		"user":    res.User.String(),
		"channel": res.Channel,
		"inviter": res.Inviter.String(),
		"invitee": res.Invitee.String(),
		"notices": encodeNotices(res.Notices),
	}
	if res.Replaced != nil {
		fields["replaced"] = map[string]any{
			"channel": res.Replaced.Channel,
			"inviter": res.Replaced.Inviter.String(),
		}
	}
	return fields
}

func encodeNotices(notices []server.Notice) []any {
	list := make([]any, 0, len(notices))
	for _, n := range notices {
		list = append(list, map[string]any{
			"recipient": n.Recipient.String(),
			"kind":      string(n.Kind),
			"channel":   n.Channel,
			"actor":     n.Actor.String(),
			"at":        n.At.UTC().Format(time.RFC3339Nano),
		})
	}
	return list
}

// DecodeResult is the client side counterpart of the replies sent by
// ChannelServiceHandler.
func DecodeResult(s *structpb.Struct) server.Result {
	f := s.GetFields()
	outcome, _ := server.ParseOutcome(f["outcome"].GetStringValue())
	res := server.Result{
		Outcome: outcome,
		User:    server.UserID(f["user"].GetStringValue()),
		Channel: f["channel"].GetStringValue(),
		Inviter: server.UserID(f["inviter"].GetStringValue()),
		Invitee: server.UserID(f["invitee"].GetStringValue()),
		Notices: DecodeNotices(s),
	}
	if r := f["replaced"].GetStructValue(); r != nil {
		res.Replaced = &server.PendingInvite{
			Invitee: res.Invitee,
			Channel: r.GetFields()["channel"].GetStringValue(),
			Inviter: server.UserID(r.GetFields()["inviter"].GetStringValue()),
		}
	}
	return res
}

func DecodeNotices(s *structpb.Struct) []server.Notice {
	values := s.GetFields()["notices"].GetListValue().GetValues()
	notices := make([]server.Notice, 0, len(values))
	for _, v := range values {
		f := v.GetStructValue().GetFields()
		at, _ := time.Parse(time.RFC3339Nano, f["at"].GetStringValue())
		notices = append(notices, server.Notice{
			Recipient: server.UserID(f["recipient"].GetStringValue()),
			Kind:      server.NoticeKind(f["kind"].GetStringValue()),
			Channel:   f["channel"].GetStringValue(),
			Actor:     server.UserID(f["actor"].GetStringValue()),
			At:        at,
		})
	}
	return notices
}
