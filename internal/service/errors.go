package service

import "errors"

// Business-rule errors. Handlers map these to HTTP statuses; nothing in
// the service layer retries or swallows them, and no multi-document
// effect is left partially applied when one is returned.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrNotMember        = errors.New("you are not a member of this conversation")
	ErrNotSender        = errors.New("only the sender can modify this message")
	ErrInvalidReply     = errors.New("reply target missing or in another conversation")
	ErrSelfRequest      = errors.New("can't send a request to yourself")
	ErrDuplicateRequest = errors.New("a request between these users is already pending")
	ErrAlreadyFriends   = errors.New("you are already friends with this user")
	ErrNotGroup         = errors.New("conversation is not a group")
	ErrAlreadyMember    = errors.New("user is already a member of this conversation")
	ErrInvalidMembers   = errors.New("invalid conversation members")
	ErrCallInProgress   = errors.New("there's already a call in progress in this conversation")
	ErrInvalidCallState = errors.New("call is not in a state that allows this transition")
	ErrNotInitiator     = errors.New("only the initiator can cancel the call")
)
