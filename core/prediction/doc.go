// Package prediction estimates where a waiting passenger is going. A
// Predictor maps origin floor, time of day and weekday to a ranked
// distribution over destination floors. The engine reads predictors through a
// Handle so a newly trained model can replace the current one atomically
// while ticks are running.
package prediction
