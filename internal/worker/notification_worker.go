package worker

// HandlerRegistrar subscribes its handlers on an event dispatcher.
type HandlerRegistrar interface {
	RegisterHandlers()
}

// StartNotificationWorker registers the settings audit handlers on the dispatcher.
func StartNotificationWorker(registrar HandlerRegistrar) {
	if registrar == nil {
		return
	}
	registrar.RegisterHandlers()
}
