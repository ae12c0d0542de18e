// Package maintenance runs periodic housekeeping for the API, currently the
// reaping of tokens that belong to deactivated users.
//
//	scheduler := maintenance.NewScheduler(logger)
//	reaper := maintenance.NewTokenReaper(cachedTokens, metrics, logger)
//	if err := scheduler.Add("token-reaper", "@hourly", 5*time.Minute, maintenance.ReapJob(reaper)); err != nil {
//	    return err
//	}
//	go scheduler.Run(ctx)
package maintenance
