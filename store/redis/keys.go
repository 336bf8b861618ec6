package redis

import "github.com/ddeklerk28/groupq/job"

// Redis key naming conventions for groupq data.
// All keys are prefixed with "groupq:" to avoid collisions.

const keyPrefix = "groupq:"

// jobKey returns the key for a job entity: groupq:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// jobIDsKey is the Set tracking all job IDs for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// runnableKey is the Sorted Set of pending and retrying job IDs, scored
// by submission sequence so a range scan yields submission order.
const runnableKey = keyPrefix + "runnable"

// seqKey is the INCR counter assigning submission sequence numbers.
const seqKey = keyPrefix + "seq"

// stateKey returns the Set of job IDs in a state: groupq:state:{state}
func stateKey(state job.State) string { return keyPrefix + "state:" + string(state) }
