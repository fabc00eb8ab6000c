package model

// CategoryID groups notification types that offer the same actions.
type CategoryID string

const (
	CategoryCourse      CategoryID = "course"
	CategoryTest        CategoryID = "test"
	CategoryTask        CategoryID = "task"
	CategoryMessage     CategoryID = "message"
	CategoryAchievement CategoryID = "achievement"
	CategoryFeed        CategoryID = "feed"
	CategoryReminder    CategoryID = "reminder"
)

// Action identifiers offered by the default categories.
const (
	ActionViewCourse      = "view_course"
	ActionStartLearning   = "start_learning"
	ActionStartTest       = "start_test"
	ActionRemindLater     = "remind_later"
	ActionCompleteTask    = "complete_task"
	ActionViewDetails     = "view_details"
	ActionReply           = "reply"
	ActionMarkRead        = "mark_read"
	ActionViewAchievement = "view_achievement"
	ActionShare           = "share"
	ActionViewPost        = "view_post"
	ActionLike            = "like"
	ActionComplete        = "complete"
	ActionSnooze          = "snooze"

	// ActionDefault is reported when the user taps the notification body.
	ActionDefault = "default"
	// ActionDismiss is reported when the user swipes the notification away.
	ActionDismiss = "dismiss"
)

type ActionOptions uint8

const (
	ActionForeground ActionOptions = 1 << iota
	ActionDestructive
	ActionAuthenticationRequired
)

type TextInput struct {
	ButtonTitle string `json:"button_title"`
	Placeholder string `json:"placeholder"`
}

type Action struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Options   ActionOptions `json:"options"`
	TextInput *TextInput    `json:"text_input,omitempty"`
}

type Category struct {
	ID      CategoryID `json:"id"`
	Actions []Action   `json:"actions"`
}

// DefaultCategories returns the action sets registered at startup.
func DefaultCategories() []Category {
	return []Category{
		{ID: CategoryCourse, Actions: []Action{
			{ID: ActionViewCourse, Title: "Open course", Options: ActionForeground},
			{ID: ActionStartLearning, Title: "Start learning", Options: ActionForeground},
		}},
		{ID: CategoryTest, Actions: []Action{
			{ID: ActionStartTest, Title: "Start test", Options: ActionForeground},
			{ID: ActionRemindLater, Title: "Remind me later"},
		}},
		{ID: CategoryTask, Actions: []Action{
			{ID: ActionCompleteTask, Title: "Complete", Options: ActionForeground},
			{ID: ActionViewDetails, Title: "Details", Options: ActionForeground},
		}},
		{ID: CategoryMessage, Actions: []Action{
			{ID: ActionReply, Title: "Reply", Options: ActionForeground, TextInput: &TextInput{ButtonTitle: "Reply", Placeholder: "Type a reply..."}},
			{ID: ActionMarkRead, Title: "Mark as read"},
		}},
		{ID: CategoryAchievement, Actions: []Action{
			{ID: ActionViewAchievement, Title: "View", Options: ActionForeground},
			{ID: ActionShare, Title: "Share", Options: ActionForeground},
		}},
		{ID: CategoryFeed, Actions: []Action{
			{ID: ActionViewPost, Title: "Open", Options: ActionForeground},
			{ID: ActionLike, Title: "Like"},
		}},
		{ID: CategoryReminder, Actions: []Action{
			{ID: ActionComplete, Title: "Done"},
			{ID: ActionSnooze, Title: "Snooze"},
		}},
	}
}
