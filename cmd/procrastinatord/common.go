package main

const defaultPIDFile = "/var/run/procrastinator.pid"

// resolvePIDFile applies the --pid-file override, falling back to the
// same default env.PIDFile would use when PID_FILE is unset.
func resolvePIDFile(override string) string {
	if override != "" {
		return override
	}
	return defaultPIDFile
}
