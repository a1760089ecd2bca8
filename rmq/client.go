package rmq

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"caresignal.com/triage/logger"
)

type Config struct {
	Host        string `envconfig:"TRIAGE_COMN_RMQ_HOST" required:"true"`
	Port        string `envconfig:"TRIAGE_COMN_RMQ_PORT" required:"true"`
	Username    string `envconfig:"TRIAGE_COMN_RMQ_USERNAME" required:"true"`
	Password    string `envconfig:"TRIAGE_COMN_RMQ_PASSWORD" required:"true"`
	Exchange    string `envconfig:"TRIAGE_COMN_RMQ_DEFAULT_EXCHANGE" default:"caresignal-default-exchange"`
	AlertsQueue string `envconfig:"TRIAGE_COMN_ALERTS_QUEUE" required:"true"`
}

// Client is a publish-only AMQP client for supervisor notifications.
// Delivery is fire-and-forget; the triage pipeline never consumes.
type Client struct {
	ChanErrors <-chan *amqp.Error
	config     Config
	conn       *amqp.Connection
	channel    *amqp.Channel
	rmqLogger  *zerolog.Logger
}

func NewClient() (*Client, error) {
	rmqLogger := logger.NewLogger("RMQ client")
	var err error
	var config Config
	if err = envconfig.Process("", &config); err != nil {
		rmqLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}

	conn, channel, err := setup(getURL(config))
	if err != nil {
		return nil, fmt.Errorf("failed connection: %s", err)
	}

	if _, err := channel.QueueDeclare(
		config.AlertsQueue, // name
		true,               // durable
		false,              // delete when unused
		false,              // exclusive
		false,              // no-wait
		nil,                // arguments
	); err != nil {
		return nil, err
	}
	if err := channel.QueueBind(
		config.AlertsQueue,
		config.AlertsQueue,
		config.Exchange,
		false,
		nil); err != nil {
		return nil, err
	}
	chanErrors := channel.NotifyClose(make(chan *amqp.Error))

	return &Client{
		ChanErrors: chanErrors,
		config:     config,
		conn:       conn,
		channel:    channel,
		rmqLogger:  &rmqLogger,
	}, nil
}

// PublishAlert sends one notification message to the supervisor alerts queue.
func (c *Client) PublishAlert(messageID string, body []byte) error {
	return c.channel.Publish(
		c.config.Exchange,
		c.config.AlertsQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   messageID,
			Body:        body,
		})
}

func (c *Client) Close() {
	_ = c.conn.Close()
}

func getURL(config Config) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s", config.Username, config.Password, config.Host, config.Port)
}

func setup(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	return conn, ch, nil
}
