package kafka

// TopicPrefix namespaces every topic the service writes to.
const TopicPrefix = "pocket"

// Topic builds a topic name such as "pocket.auth.login".
func Topic(domain, action string) string {
	return TopicPrefix + "." + domain + "." + action
}
