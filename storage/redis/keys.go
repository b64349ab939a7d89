package redis

import "fmt"

// rolloverKey is the key that stores the serialized rollover snapshot captured at the given
// tick. One snapshot is written per wrap of the sample store.
func rolloverKey(namespace string, tick uint64) string {
	return fmt.Sprintf("PULSE:ROLLOVER:NAMESPACE-%s:TICK-%d", namespace, tick)
}

// latestRolloverTickKey is the key that stores the tick of the most recent rollover snapshot,
// so bootstrap can find it without scanning.
func latestRolloverTickKey(namespace string) string {
	return fmt.Sprintf("PULSE:LATEST-ROLLOVER-TICK:NAMESPACE-%s", namespace)
}
