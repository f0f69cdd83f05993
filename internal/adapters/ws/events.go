package ws

// Inbound event names map 1:1 to core operations; outbound names mirror the
// inbound one except for AppError, which only the server emits.
const (
	EvCreateRoom       = "create_room"
	EvJoinRoom         = "join_room"
	EvExitRoom         = "exit_room"
	EvListRooms        = "list_rooms"
	EvViewRoom         = "view_room"
	EvMyRooms          = "my_rooms"
	EvTyping           = "typing"
	EvStopTyping       = "stop_typing"
	EvAddMessage       = "add_message"
	EvAddReaction      = "add_reaction"
	EvSetUserName      = "set_user_name"
	EvReportUser       = "report_user"
	EvFindCounsellor   = "find_counsellor"
	EvCounsellorOnline = "counsellor_online"
	EvListIssues       = "list_issues"
	EvRegisterPush     = "register_push"

	EvAppError = "bubble_error"
)
