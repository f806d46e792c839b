// Package domain holds the validated value types shared by the HTTP layer,
// the publish path and the delivery workers.
package domain

// NewSubscriber is a validated subscription request.
type NewSubscriber struct {
	Email SubscriberEmail
	Name  SubscriberName
}

// ParseNewSubscriber validates both fields of a subscription request.
func ParseNewSubscriber(email, name string) (NewSubscriber, error) {
	e, err := ParseSubscriberEmail(email)
	if err != nil {
		return NewSubscriber{}, err
	}
	n, err := ParseSubscriberName(name)
	if err != nil {
		return NewSubscriber{}, err
	}
	return NewSubscriber{Email: e, Name: n}, nil
}
