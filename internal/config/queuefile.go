package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/procrastinator/procrastinator/internal/queue"
)

// QueueDef is one queue's declarative definition as read from a YAML
// queue file. Only the options queue.Option can express are representable
// here; the handler factory is never in YAML and must be supplied in Go,
// joined to this definition by matching Name against a registered handler.
type QueueDef struct {
	Name                string `mapstructure:"name"`
	TimeoutSeconds      *int   `mapstructure:"timeout_seconds"`
	MaxAttempts         *int   `mapstructure:"max_attempts"`
	UpdatePeriodSeconds *int   `mapstructure:"update_period_seconds"`
	MaxTasks            *int   `mapstructure:"max_tasks"`
}

// queueFile is the top-level shape of a queue YAML file: a "queues" list.
type queueFile struct {
	Queues []QueueDef `mapstructure:"queues"`
}

// LoadQueueDefs reads and parses a YAML queue file at path using viper.
func LoadQueueDefs(path string) ([]QueueDef, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read queue file %q: %w", path, err)
	}

	var parsed queueFile
	if err := v.Unmarshal(&parsed); err != nil {
		return nil, fmt.Errorf("config: parse queue file %q: %w", path, err)
	}
	return parsed.Queues, nil
}

// Options converts a QueueDef into queue.Options, leaving queue.New's
// defaults in place for any field the YAML omitted.
func (d QueueDef) Options() []queue.Option {
	var opts []queue.Option
	if d.TimeoutSeconds != nil {
		opts = append(opts, queue.WithTimeout(time.Duration(*d.TimeoutSeconds)*time.Second))
	}
	if d.MaxAttempts != nil {
		opts = append(opts, queue.WithMaxAttempts(*d.MaxAttempts))
	}
	if d.UpdatePeriodSeconds != nil {
		opts = append(opts, queue.WithUpdatePeriod(time.Duration(*d.UpdatePeriodSeconds)*time.Second))
	}
	if d.MaxTasks != nil {
		opts = append(opts, queue.WithMaxTasks(*d.MaxTasks))
	}
	return opts
}

// RegisterFromFile loads queue definitions from path and registers each
// against a handler factory supplied by lookupHandler (keyed by queue
// name), since handler factories cannot be expressed in YAML.
func (r *Registry) RegisterFromFile(path string, lookupHandler func(name string) (queue.HandlerFactory, bool)) error {
	defs, err := LoadQueueDefs(path)
	if err != nil {
		return err
	}
	for _, d := range defs {
		handlerNew, ok := lookupHandler(d.Name)
		if !ok {
			return fmt.Errorf("config: queue file declares %q but no handler factory was registered for it", d.Name)
		}
		if _, err := r.RegisterQueue(d.Name, handlerNew, d.Options()...); err != nil {
			return err
		}
	}
	return nil
}
