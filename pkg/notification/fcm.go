package notification

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/converseapp/converse/internal/repository"
)

// NotificationService handles FCM push notifications. A nil service is
// valid and drops all sends, so startup never blocks on missing
// Firebase credentials.
type NotificationService struct {
	client   *messaging.Client
	userRepo *repository.UserRepository
}

// NewNotificationService creates a new FCM notification service
func NewNotificationService(credentialsFile string, userRepo *repository.UserRepository) (*NotificationService, error) {
	if credentialsFile == "" {
		log.Warn().Msg("firebase credentials not provided, push notifications disabled")
		return nil, nil
	}

	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize firebase app, push notifications disabled")
		return nil, nil
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("failed to get messaging client, push notifications disabled")
		return nil, nil
	}

	log.Info().Msg("firebase FCM initialized")
	return &NotificationService{
		client:   client,
		userRepo: userRepo,
	}, nil
}

// SendMessageNotification sends a push notification for a new chat message
func (s *NotificationService) SendMessageNotification(ctx context.Context, receiverID uuid.UUID, senderName, preview string, conversationID uuid.UUID) error {
	if s == nil || s.client == nil {
		return nil
	}
	if preview == "" {
		preview = "Sent an attachment"
	}
	return s.sendToUser(ctx, receiverID, &messaging.Notification{
		Title: senderName,
		Body:  preview,
	}, map[string]string{
		"type":            "new_message",
		"conversation_id": conversationID.String(),
		"sender_name":     senderName,
	})
}

// SendIncomingCallNotification sends a high-priority push for a ringing call
func (s *NotificationService) SendIncomingCallNotification(ctx context.Context, receiverID uuid.UUID, callerName string, callID uuid.UUID, callType string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.sendToUser(ctx, receiverID, &messaging.Notification{
		Title: callerName,
		Body:  fmt.Sprintf("Incoming %s call", callType),
	}, map[string]string{
		"type":      "incoming_call",
		"call_id":   callID.String(),
		"call_type": callType,
	})
}

func (s *NotificationService) sendToUser(ctx context.Context, receiverID uuid.UUID, notification *messaging.Notification, data map[string]string) error {
	devices, err := s.userRepo.GetUserDevices(receiverID)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return nil
	}

	tokens := make([]string, 0, len(devices))
	for _, d := range devices {
		tokens = append(tokens, d.FCMToken)
	}

	message := &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: notification,
		Data:         data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	br, err := s.client.SendMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending multicast message: %w", err)
	}

	if br.FailureCount > 0 {
		for idx, resp := range br.Responses {
			if !resp.Success {
				log.Warn().Err(resp.Error).Str("token", tokens[idx]).Msg("fcm delivery failure")
			}
		}
	}
	return nil
}
