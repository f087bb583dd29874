/*
Package events provides an in-process event broker for membership and recovery
notifications.

The watcher and the recovery coordinator publish events as workers appear,
disappear and get recovered. Subscribers (the CLI's verbose mode, tests,
embedding applications) receive them on buffered channels.

# Event Types

	worker.running          pod observed running
	worker.deleted          running pod observed deleted
	worker.recovered        engine recovery for a worker succeeded
	worker.recovery_failed  engine recovery for a worker returned an error
	watch.exhausted         pod watch gave up after its retry budget
	coordinator.status      coordinator status changed

Worker events carry the pod name under the "worker_id" metadata key.

# Delivery

Publishing never blocks the watcher: when the broker queue (100 events) or a
subscriber buffer (50 events) is full the event is dropped. Events are a
notification side channel; the membership table and the engine remain the
source of truth.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	for ev := range sub {
		fmt.Println(ev.Type, ev.Metadata["worker_id"])
	}
*/
package events
