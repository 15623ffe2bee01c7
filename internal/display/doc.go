// Package display shows the latest reading on a four-digit display.
//
// The layout is two digits of temperature followed by two digits of
// humidity: 21.3 C / 55.5 % renders as "2155". Values are truncated, and
// negative or NaN values render as 0.
//
// Renderers:
//   - [TM1637]: 4-digit 7-segment module driven over two GPIO lines
//   - [Console]: logs the digits, for hosts without a display
package display
