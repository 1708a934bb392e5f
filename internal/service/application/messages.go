package application

import (
	"fmt"

	"github.com/jwalitptl/jobboard-api/internal/model"
)

const targetKindApplication = "application"

type statusMessage struct {
	title   string
	content string
}

var statusMessages = map[model.ApplicationStatus]statusMessage{
	model.ApplicationStatusReviewing: {
		title:   "Application under review",
		content: "Your application for %s is now being reviewed by the employer.",
	},
	model.ApplicationStatusApproved: {
		title:   "Application approved",
		content: "Congratulations! Your application for %s has been approved.",
	},
	model.ApplicationStatusRejected: {
		title:   "Application not selected",
		content: "Thank you for your interest. Your application for %s was not selected.",
	},
}

func applicationTarget(app *model.Application) (*string, model.JSONMap) {
	kind := targetKindApplication
	return &kind, model.JSONMap{
		"applicationId": app.ID.String(),
		"jobId":         app.JobID.String(),
		"status":        string(app.Status),
	}
}

// statusNotice is what the candidate is told about app's current status.
func statusNotice(app *model.Application, jobTitle string) model.NotificationInput {
	msg, ok := statusMessages[app.Status]
	if !ok {
		msg = statusMessage{
			title:   "Application updated",
			content: "The status of your application for %s changed.",
		}
	}

	targetKind, payload := applicationTarget(app)
	targetID := app.ID
	return model.NotificationInput{
		Title:      msg.title,
		Content:    fmt.Sprintf(msg.content, jobTitle),
		Kind:       model.NotificationKindJob,
		TargetKind: targetKind,
		TargetID:   &targetID,
		Payload:    payload,
	}
}

// newApplicationNotice is what the company's HR users are told.
func newApplicationNotice(app *model.Application, job *model.Job) model.NotificationInput {
	targetKind, payload := applicationTarget(app)
	targetID := app.ID
	return model.NotificationInput{
		Title:      "New application",
		Content:    fmt.Sprintf("A candidate applied for %s.", job.Title),
		Kind:       model.NotificationKindJob,
		TargetKind: targetKind,
		TargetID:   &targetID,
		Payload:    payload,
	}
}
