package jobs

import (
	"github.com/rs/zerolog/log"

	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/service"
	"github.com/converseapp/converse/internal/ws"
)

// MissedCallJob expires stale ringing calls and notifies the members
// whose call just became missed.
type MissedCallJob struct {
	callService *service.CallService
	chatService *service.ChatService
	hub         *ws.Hub
}

func NewMissedCallJob(callService *service.CallService, chatService *service.ChatService, hub *ws.Hub) *MissedCallJob {
	return &MissedCallJob{callService: callService, chatService: chatService, hub: hub}
}

// Run implements cron.Job
func (j *MissedCallJob) Run() {
	missed, err := j.callService.SweepMissed()
	if err != nil {
		log.Error().Err(err).Msg("missed call sweep")
		return
	}
	for _, call := range missed {
		memberIDs, err := j.chatService.GetMemberIDs(call.ConversationID)
		if err != nil {
			continue
		}
		j.hub.SendToUsers(memberIDs, &model.WSEvent{
			Type: model.WSEventCallMissed,
			Payload: model.CallEvent{
				CallID:         call.ID,
				ConversationID: call.ConversationID,
				InitiatorID:    call.InitiatorID,
				Status:         call.Status,
				Type:           call.Type,
				RoomID:         call.RoomID,
			},
		})
	}
}
