package watchlist

import (
	"context"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/option"

	"github.com/0xlajaz/xandeum-nexus/internal/config"

	"github.com/sirupsen/logrus"
)

const watchCollection = "watchlists"

// FirestoreStore persists subscriptions in Firestore, one document per
// subscriber with a "pubkeys" array field. Documents survive restarts,
// which is the point: subscriptions outlive any polling cycle.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to Firestore using service-account
// credentials assembled from the environment.
func NewFirestoreStore(ctx context.Context, cfg *config.Config) (*FirestoreStore, error) {
	conf := &firebase.Config{ProjectID: cfg.FirebaseProjectID}

	creds := option.WithCredentialsJSON([]byte(`{
		"type": "service_account",
		"project_id": "` + cfg.FirebaseProjectID + `",
		"private_key": "` + cfg.FirebasePrivateKey + `",
		"client_email": "` + cfg.FirebaseClientEmail + `",
		"auth_uri": "https://accounts.google.com/o/oauth2/auth",
		"token_uri": "https://oauth2.googleapis.com/token",
		"auth_provider_x509_cert_url": "https://www.googleapis.com/oauth2/v1/certs"
	}`))

	app, err := firebase.NewApp(ctx, conf, creds)
	if err != nil {
		return nil, err
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, err
	}

	return &FirestoreStore{client: client}, nil
}

func (f *FirestoreStore) All(ctx context.Context) (map[string][]string, error) {
	docs, err := f.client.Collection(watchCollection).Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(docs))
	for _, doc := range docs {
		out[doc.Ref.ID] = decodePubkeys(doc.Data())
	}
	return out, nil
}

func (f *FirestoreStore) Get(ctx context.Context, subscriber string) ([]string, error) {
	doc, err := f.client.Collection(watchCollection).Doc(subscriber).Get(ctx)
	if err != nil {
		if doc != nil && !doc.Exists() {
			return nil, nil
		}
		return nil, err
	}
	return decodePubkeys(doc.Data()), nil
}

func (f *FirestoreStore) Add(ctx context.Context, subscriber, pubkey string) (bool, error) {
	if !validDocID(subscriber) || !validDocID(pubkey) {
		logrus.Warnf("Rejecting watch with invalid identifiers (%q, %q)", subscriber, pubkey)
		return false, nil
	}

	existing, err := f.Get(ctx, subscriber)
	if err != nil {
		return false, err
	}
	for _, pk := range existing {
		if pk == pubkey {
			return false, nil
		}
	}

	_, err = f.client.Collection(watchCollection).Doc(subscriber).Set(ctx, map[string]interface{}{
		"pubkeys": append(existing, pubkey),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (f *FirestoreStore) Remove(ctx context.Context, subscriber, pubkey string) (bool, error) {
	existing, err := f.Get(ctx, subscriber)
	if err != nil {
		return false, err
	}

	kept := existing[:0]
	removed := false
	for _, pk := range existing {
		if pk == pubkey {
			removed = true
			continue
		}
		kept = append(kept, pk)
	}
	if !removed {
		return false, nil
	}

	doc := f.client.Collection(watchCollection).Doc(subscriber)
	if len(kept) == 0 {
		_, err = doc.Delete(ctx)
	} else {
		_, err = doc.Set(ctx, map[string]interface{}{"pubkeys": kept})
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the Firestore client.
func (f *FirestoreStore) Close() error {
	return f.client.Close()
}

func decodePubkeys(data map[string]interface{}) []string {
	raw, ok := data["pubkeys"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Firestore document IDs cannot contain slashes or surrounding
// whitespace.
func validDocID(id string) bool {
	return id != "" && !strings.Contains(id, "/") && strings.TrimSpace(id) == id
}
