package Notifications

import (
	"context"
	"fmt"
	"log"
	"os"

	"Convoy/Models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// Global Firebase client
var firebaseClient *messaging.Client
var fcmCtx = context.Background()

// InitFirebase sets up Firebase Cloud Messaging. Call once at startup.
// Pushes become no-ops when no credentials file is configured.
func InitFirebase() error {
	credentialsPath := os.Getenv("FIREBASE_CREDENTIALS")
	if credentialsPath == "" {
		log.Println("FIREBASE_CREDENTIALS not set, push notifications disabled")
		return nil
	}

	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(fcmCtx, nil, opt)
	if err != nil {
		return fmt.Errorf("error initializing Firebase app: %v", err)
	}

	client, err := app.Messaging(fcmCtx)
	if err != nil {
		return fmt.Errorf("error getting Messaging client: %v", err)
	}

	firebaseClient = client
	log.Println("Firebase initialized successfully")
	return nil
}

// SendPush delivers a push notification to every registered device token.
func SendPush(db *gorm.DB, title, body string, data map[string]string) {
	if firebaseClient == nil {
		return
	}

	var tokens []Models.FCMToken
	if err := db.Find(&tokens).Error; err != nil {
		log.Printf("Failed to load FCM tokens: %v", err)
		return
	}

	for _, token := range tokens {
		message := &messaging.Message{
			Token: token.Value,
			Data:  data,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Android: &messaging.AndroidConfig{
				Notification: &messaging.AndroidNotification{
					Sound: "default",
				},
				Priority: "high",
			},
		}

		if _, err := firebaseClient.Send(fcmCtx, message); err != nil {
			log.Printf("Error sending push to token %d: %v", token.ID, err)
		}
	}
}
