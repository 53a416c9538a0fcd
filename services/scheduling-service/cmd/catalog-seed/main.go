// catalog-seed publishes business catalog events so a local scheduling
// service has a tenant, a service and a staff member to book against.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/catalog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

type seed struct {
	BusinessID   string
	BusinessName string
	ServiceID    string
	ServiceName  string
	Duration     int
	Price        string
	StaffID      string
	StaffName    string
}

func main() {
	var (
		brokers = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "comma separated kafka brokers")
		s       seed
	)
	flag.StringVar(&s.BusinessID, "business-id", getenv("BUSINESS_ID", ""), "tenant id")
	flag.StringVar(&s.BusinessName, "business-name", "Demo Salon", "tenant display name")
	flag.StringVar(&s.ServiceID, "service-id", "", "service id (skipped when empty)")
	flag.StringVar(&s.ServiceName, "service-name", "Haircut", "service name")
	flag.IntVar(&s.Duration, "duration", 30, "service duration in minutes")
	flag.StringVar(&s.Price, "price", "25.00", "service price")
	flag.StringVar(&s.StaffID, "staff-id", "", "staff id (skipped when empty)")
	flag.StringVar(&s.StaffName, "staff-name", "Alex", "staff display name")
	flag.Parse()

	if strings.TrimSpace(s.BusinessID) == "" {
		fatal("BUSINESS_ID is required")
	}
	msgs, err := buildMessages(s)
	if err != nil {
		fatal(err.Error())
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(kafkax.SplitBrokers(*brokers)...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.WriteMessages(ctx, msgs...); err != nil {
		fatal(err.Error())
	}
	for _, m := range msgs {
		fmt.Printf("published topic=%s key=%s\n", m.Topic, m.Key)
	}
}

// buildMessages keys every event by business id so they land on one
// partition in order.
func buildMessages(s seed) ([]kafka.Message, error) {
	var msgs []kafka.Message
	add := func(topic string, payload any) error {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		meta := kafkax.EventMeta{EventID: uuid.NewString(), EventType: topic}
		msgs = append(msgs, kafka.Message{
			Topic:   topic,
			Key:     []byte(s.BusinessID),
			Value:   raw,
			Headers: meta.Headers(),
		})
		return nil
	}

	if err := add(catalog.TopicTenantUpserted, catalog.TenantUpsert{BusinessID: s.BusinessID, Name: s.BusinessName}); err != nil {
		return nil, err
	}
	if s.ServiceID != "" {
		price, err := decimal.NewFromString(s.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", s.Price, err)
		}
		if s.Duration <= 0 {
			return nil, fmt.Errorf("duration must be positive")
		}
		if err := add(catalog.TopicServiceUpserted, catalog.ServiceUpsert{
			BusinessID:      s.BusinessID,
			ServiceID:       s.ServiceID,
			Name:            s.ServiceName,
			DurationMinutes: s.Duration,
			Price:           price,
		}); err != nil {
			return nil, err
		}
	}
	if s.StaffID != "" {
		if err := add(catalog.TopicStaffUpserted, catalog.StaffUpsert{
			BusinessID: s.BusinessID,
			StaffID:    s.StaffID,
			Name:       s.StaffName,
		}); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
